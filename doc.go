/*
Package agentloop runs a streaming, cyclic agent workflow: a model step that may
request a tool, a tool step that answers it, and back, until the model replies
without a tool call.

# Concept

Model output reaches the caller on two channels. Fragments are streamed live as
the model produces them and are never read by another node. Once the model is
done the fragments are folded into exactly one committed message, and only that
message is appended to the working log and used for routing.

A run works on a private copy of the session log. The copy is persisted when the
run completes; a failed, timed out or abandoned run leaves the stored session as
it was. A session serves one run at a time; a second run is rejected with
domain.ErrSessionBusy.

# Usage

	reg := registry.NewRegistry()
	weather.Register(reg)

	eng, err := agentloop.New(mockmodel.New(mockmodel.WithTools(reg)), reg)
	if err != nil {
		log.Fatal(err)
	}

	for ev := range eng.RunTurn(ctx, "session-1", "上海天气怎么样?") {
		switch ev.Type {
		case domain.EventFragment:
			fmt.Print(ev.Fragment.Delta)
		case domain.EventRunFailed:
			log.Print(ev.Err)
		}
	}

The HTTP transport in pkg/adapters/http exposes the same runs as Server-Sent
Events.
*/
package agentloop
