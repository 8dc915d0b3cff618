/*
Package ports defines the driven ports (interfaces) of the agent workflow engine.

These interfaces decouple the executor from external implementations, allowing
it to work with any model backend, tool backend or storage.

# Key Interfaces

  - ModelStep: Streams fragments from a language model.
  - ToolBackend: Executes a named tool with structured arguments.
  - SessionStore: Holds the committed conversation log per session.
  - DistributedLocker: Rejects concurrent runs of one session across replicas.
*/
package ports
