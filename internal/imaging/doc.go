// Package imaging loads document pages and moves pixels in and out of the
// layout pipeline.
//
// It provides a concurrent page cache for the server, the BGR adapter used when
// a caller hands over a raw blue-first buffer, and helpers that cut detected
// regions out of a page as base64 PNG.
//
// # Coordinate System
//
// All pixel coordinates are 0-based with (0,0) at the top-left corner. For
// regions, (x1,y1) is inclusive and (x2,y2) is exclusive, the same convention
// layout.Region.Rect uses.
//
// # Thread Safety
//
// Cache is safe for concurrent use. The remaining functions are stateless and
// never modify the image they are given.
package imaging
