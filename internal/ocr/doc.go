// Package ocr extracts text from images and PDFs through an external
// OCR service.
//
// The pipeline only depends on the Extractor interface; the Azure
// Document Intelligence implementation here follows the service's
// async pattern (submit, then poll the operation until it settles) and
// classifies failures as transient or permanent so the orchestrator
// can decide whether to retry.
package ocr
