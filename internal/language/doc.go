// Package language provides language code normalization and detection.
//
// Codes are normalized to ISO 639-1 throughout bisub. The package also maps
// them to the translation endpoint's own codes, detects the language of
// transcript text when the recognizer does not report one, and picks the
// default translation direction.
package language
