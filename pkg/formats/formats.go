// Package formats decodes and encodes the binary chunk records that store
// per-tile map attributes on disk and on the wire.
package formats
