// package models defines the data model for the flyer-to-playlist pipeline.
//
// Pipeline data (candidates, resolved artists, playlist results) is transient and
// owned by a single run. Only uploaded asset metadata is persistent; the
// [Model] and [Repository] interfaces define the contract its repository follows.
package models
