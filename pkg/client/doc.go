// Package client is the PatentChain Go SDK.
//
// It wraps the PatentChain HTTP API: submitting patents, browsing the block
// explorer, verifying the ledger, exporting records and managing snapshots.
//
// # Submitting a patent
//
//	c, err := client.New("http://localhost:8080")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	p, err := c.Submit(ctx, client.SubmitRequest{
//	    Title:       "Self-cleaning solar panel",
//	    Description: "A coating that sheds dust under vibration.",
//	    Inventor:    "A. Inventor",
//	    PatentType:  "Utility Patent",
//	    AgreeTerms:  true,
//	})
//
// # Admin operations
//
// Snapshots require an admin token. Exchange the admin secret once and the
// client sends the token on every following request:
//
//	if _, err := c.Login(ctx, secret); err != nil {
//	    log.Fatal(err)
//	}
//	summary, err := c.TakeSnapshot(ctx)
package client
