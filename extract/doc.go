// Package extract turns uploaded files into plain text for chunking.
//
// Files are dispatched on their filename extension. PDFs are read page by
// page and the page boundaries are kept as rune spans so chunks can be
// attributed to a page. Everything else is read as UTF-8 text with invalid
// byte sequences dropped.
package extract
