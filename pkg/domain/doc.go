/*
Package domain contains the core models of the agent workflow engine.

It defines the conversation entities, the static graph topology and the events
emitted while a run executes. This package is kept pure and free of external
dependencies like I/O or persistence, following Hexagonal Architecture principles.

# Key Entities

  - Message: A committed unit of conversation (user, model or tool).
  - Fragment: A partial piece of model output, only ever seen on the live stream.
  - ConversationLog: The ordered, committed history of a session.
  - GraphSpec: The model → (tool → model)* → end topology and its routing.
  - ExecutionEvent: What a run emits (fragments, commits, termination).
*/
package domain
