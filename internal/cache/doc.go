// Package cache implements the content-addressed key/value core. Values are
// keyed by the lowercase hex SHA-256 of their content and sharded into
// <aa>/<bb>/<rest> locations shared by every backend kind. FileStore writes
// through temp file + fsync + rename so readers never observe partial values;
// ObjectStore talks to S3-compatible storage. Router fans one GET/PUT out to
// every configured backend concurrently, and Tiered layers a fast primary
// backend in front of a Router with read promotion.
package cache
