// Package ui renders terminal reports with lipgloss styles.
//
// [RenderStatus] prints the library summary and recent job runs shown by `selecta status`.
package ui
