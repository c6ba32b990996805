/*
Package analyzer turns a raw utterance into a domain.MessageAnalysis.

Every heuristic is parameterized over a locale.Bundle, so the same code scores
English and Spanish input. Intent detection goes through a ports.Classifier;
the default is KeywordClassifier. When a CompletionService is configured the
intent confidence is asked to it first, bounded by a timeout, and the local
estimate is used whenever the remote call fails.
*/
package analyzer
