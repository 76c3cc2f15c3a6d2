// Package audit cross-references externalized keys in a plugin manifest with
// the entries of its property resource file.
//
// Engine drives a single audit run: it clears the findings left by the previous
// run, reads both files through a FileSource, scans them with the keyscan
// package, and reports one Finding per key that appears in only one of the two
// files. ShouldAudit decides whether a build request warrants a run at all.
package audit
