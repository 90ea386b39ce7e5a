// Package ui implements an interactive terminal interface using bubbletea's Elm architecture.
//
// The TUI provides a multi-view workflow for reviewing extracted lineups and building playlists:
//  1. [CandidateListView] : Review and toggle artist candidates extracted from a flyer
//  2. [ConfirmView] : Confirm the playlist build
//  3. [BuildView] : Monitor real-time progress updates
//  4. [ResultView] : Display the created playlist and unresolved artists
//
// The (view) [Model] implements bubbletea/Elm's standard Init/Update/View pattern, receiving messages via the Msg union type.
// Progress updates flow through a channel from the pipeline Engine, providing non-blocking status reporting during builds.
//
// Keyboard navigation uses vim-style bindings (j/k, space, enter, esc, y/n, q) with contextual help displayed via charmbracelet/bubbles/help.
package ui
