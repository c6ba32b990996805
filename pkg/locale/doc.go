/*
Package locale loads the locale-keyed resource bundles used by the analyzer and
the response generator.

A Bundle carries every language-specific table of the engine: keyword lists for
the local heuristics, intent routing rules, response templates, transition
phrases and fallback copy. Bundles are YAML documents; the built-in ones are
embedded in the binary and can be replaced or extended from a directory at
startup. Keeping the tables here leaves the analyzer and the generator free of
any hardcoded language.
*/
package locale
