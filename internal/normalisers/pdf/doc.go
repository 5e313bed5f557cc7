// Package pdf extracts page text from PDF files.
//
// Backends:
//   - Native: pure Go reader (ledongthuc/pdf), always available.
//   - Pdftotext: poppler's pdftotext, better layout handling.
//   - OCR: decorator that runs ocrmypdf on scans with no text layer.
package pdf
