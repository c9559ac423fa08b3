// Package render draws the observed subscription state as terminal text.
//
// Chart produces a header line with the instrument, current price and
// change since the first history point, followed by a sparkline of the
// rolling history. The Format* helpers are shared with the CLI.
package render
