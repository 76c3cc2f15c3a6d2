// Package keyscan extracts externalized text keys and their source positions
// from plugin manifests and property resource files.
//
// The scanners perform targeted substring extraction rather than structural
// parsing: ScanManifest collects "%key" references and ScanResources collects
// key=value entries. Both return a KeyMap keyed by key string.
package keyscan
