/*
Package ports defines the driven ports (interfaces) for the chatflow engine.

These interfaces decouple the core logic from external implementations, allowing
the engine to work with various session stores and remote collaborators.

# Key Interfaces

  - ContextStore: persists and loads per-user sessions (context + metrics).
  - CompletionService: the remote language-completion/intent service.
  - Translator: the remote translation/localization service.
  - Classifier: the local fallback intent classifier.
  - Engine: the library contract consumed by channel adapters (HTTP, MCP, CLI).
*/
package ports
