// Package pipeline turns a festival flyer image into a streaming playlist.
//
// The core abstraction is Engine, which orchestrates the three stages:
// extraction (vision with OCR fallback), resolution (artist names to
// catalog entities and top tracks via a bounded worker pool), and
// assembly (playlist creation and batched track additions). Every
// outbound call passes through the gate and the retry policy. Stages
// emit progress updates via channels for non-blocking status reporting
// to CLI/UI layers.
package pipeline
