// Package tskcase reads a Sleuthkit case database (the SQLite file produced by
// tsk_loaddb or Autopsy) as an imagetree.Source.
//
// The object hierarchy comes from tsk_objects, file metadata and stored MD5
// digests from tsk_files, and file content is reassembled from tsk_file_layout
// byte runs read directly out of raw (single or split) image segments listed in
// tsk_image_names. Container formats that need decoding (E01, AFF, VMDK) are
// listed but their files fail to open.
package tskcase
