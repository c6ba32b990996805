/*
Package chatflow is a quality-controlled dialogue engine for property inquiries.

Each call to Engine.ProcessMessage runs one turn for a user: the utterance is
analyzed (clarity, intent, sentiment, completeness, ambiguities, entities),
the conversation state machine advances, a structured response with optional
clarification options is produced, and the turn is scored. The user's context
and metrics are committed only once all of that succeeded.

# Usage

	eng, err := chatflow.New()
	if err != nil {
		log.Fatal(err)
	}

	res, err := eng.ProcessMessage(ctx, "user-42", "I'm looking for a house in Miami", "web")
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(res.Response.Message)

Remote collaborators are optional. Without a completion service the analysis
is fully local and deterministic; without a translator, users whose language
has no bundle get the default (English) copy.

	client, err := openai.New(openai.Config{APIKey: os.Getenv("OPENAI_API_KEY")})
	if err != nil {
		log.Fatal(err)
	}
	eng, err := chatflow.New(
		chatflow.WithCompletion(client),
		chatflow.WithTranslator(client),
		chatflow.WithRemoteTimeout(3*time.Second),
	)

# Channels

Adapters for HTTP (pkg/adapters/http) and MCP (pkg/adapters/mcp) expose the
same ports.Engine contract; cmd/chatflow wires them together.
*/
package chatflow
