// Package prompt holds the few interactive prompts gr shows: a fuzzy
// branch picker, yes/no confirmations and single-line input.
//
// Prompts draw on stderr so stdout stays clean for data. Callers check
// [Interactive] first and require the equivalent flag otherwise.
package prompt
