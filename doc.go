// Package botrelay hosts many Telegram bots behind one webhook endpoint
// across a fleet of identical instances.
//
// Each instance keeps its own view of which bots have a live webhook and a
// local cache of bot records. Mutations made on one instance are announced
// on a notification bus so every other instance converges: caches are
// evicted and registration state is marked without repeating provider
// calls.
//
// Key features:
//   - Webhook registration on startup and deregistration on shutdown
//   - Bot CRUD that keeps webhooks, caches and peers in step
//   - Pluggable stores (Memory, Bun on SQLite/Postgres, Redis, MongoDB)
//   - Pluggable buses (Memory, Redis pub/sub, Kafka)
//   - Per-bot secret tokens checked on every inbound call
//
// Quick start:
//
//	r, err := botrelay.New(
//	    botrelay.WithStore(memory.New()),
//	    botrelay.WithClient(telegram.New(telegram.Config{})),
//	    botrelay.WithWebhookDomain("https://bots.example.com"),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := r.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer r.Stop(context.Background())
//
//	r.Bots().Create(ctx, botrelay.Input{Username: "my_bot", Token: token})
package botrelay
