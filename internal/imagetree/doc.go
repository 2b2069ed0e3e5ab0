// Package imagetree defines the read-only view of a forensic image's logical
// file tree consumed by the scan pipeline.
//
// A Source enumerates images and opens their root content nodes. Nodes expose
// their byte stream, stored MD5 digest, and children; the pipeline never
// mutates them. Concrete sources live in sub-packages: tskcase reads a
// Sleuthkit case database, dirtree treats a local directory as an image.
//
// The Image value is the explicit "currently processing" context. It is passed
// through the walker and stager rather than held as shared state so subtrees
// can be processed independently.
package imagetree
