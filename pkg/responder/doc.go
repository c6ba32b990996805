// Package responder builds the structured reply of a turn from the locale
// bundle templates: personalization, fallback options, rich media and
// optional remote translation.
package responder
