// Package sources provides audit.FileSource implementations backed by the
// local filesystem, HTTP servers, and S3-compatible object stores, plus an
// LRU caching decorator and a scheme-based router.
package sources
