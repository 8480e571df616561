// Package ewf implements the storage engine for Expert Witness Format
// (EWF/E01) forensic disk-image containers: the segmented container
// format, the section layer, the chunk table, chunked random-access I/O
// with compression and per-chunk checksums, a read-through chunk cache,
// and the write-time segmentation planner.
//
// A Handle is the root entity. Open an existing image with Open, or
// start a new one with Create; both return a *Handle that implements
// io.Reader, io.ReaderAt, io.Writer, io.Seeker and io.Closer over the
// logical media byte stream.
package ewf
