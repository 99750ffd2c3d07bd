// Package textsplit cuts document text into overlapping chunks sized for
// embedding. Cuts prefer paragraph breaks, then line breaks, then sentence
// ends, then spaces, and fall back to a hard cut at the size limit.
//
// Sizes and overlaps are measured in runes. Every pair of adjacent chunks
// shares exactly the configured overlap, and concatenating the first chunk
// with every later chunk minus its leading overlap reproduces the input.
package textsplit
