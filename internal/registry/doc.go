// Package registry resolves the [caches.<name>] tables of the configuration
// into typed backend descriptors and opens them as cache.Store values. The
// descriptor set is closed: a Descriptor is either a FilesystemDescriptor or
// an ObjectStoreDescriptor, and Open switches over both exhaustively. Build
// ties everything together and returns a flat cache.Router or, when a
// primary cache is configured, a two-tier cache.Tiered.
package registry
