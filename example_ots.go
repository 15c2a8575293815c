package forge

// Example: OpenTimestamps Submission and Upgrade
//
// This example walks through raising a sealed block's Merkle root from
// level 1 (self) to level 4 (anchored) via OTSClient, mirroring the
// submit-then-poll lifecycle a long-running process would run on a
// schedule.
//
// Usage Example:
//
//   ws := forge.NewMemoryWitnessStore() // or a FileStore/SQLiteStore
//   cfg := forge.DefaultConfig()
//   client := forge.NewOTSClient(ws, cfg)
//
//   chain := forge.NewChain("alice@example.com")
//   chain.Record(forge.RecordedOperation{
//       Who: "alice@example.com", From: "draft", Action: "submit", To: "review",
//   })
//
//   // A long-running process calls ShouldSeal on whatever schedule it
//   // likes; it only returns true once cfg.AnchorEvery atoms have
//   // accumulated unsealed.
//   if !chain.ShouldSeal(cfg) {
//       return
//   }
//   block := chain.Seal(time.Now().UnixMilli())
//
//   // Submit the root to every configured calendar. A single calendar's
//   // failure never aborts the others; SubmitToOTS persists an
//   // ots_pending receipt once at least one calendar accepts it.
//   pending, err := client.SubmitToOTS(context.Background(), block.Root)
//   if err != nil {
//       log.Fatal(err)
//   }
//   fmt.Printf("submitted to %d/%d calendars\n", pending.SuccessfulSubmissions, pending.TotalCalendars)
//
//   // Later — minutes to hours later in practice, since Bitcoin
//   // confirmation is not instantaneous — poll for the upgrade:
//   result, err := client.CheckOTSUpgrade(context.Background(), block.Root)
//   if err != nil {
//       log.Fatal(err)
//   }
//   if result.Upgraded {
//       fmt.Println("root is now anchored in a Bitcoin block")
//   }
//
//   level, _ := forge.WitnessLevelFor(ws, block.Root)
//   fmt.Println("current level:", level.Label)
//
//
// A calendar outage during CheckOTSUpgrade does not regress the witness
// level: witness level is a max-monoid over stored receipts, so a failed
// poll simply leaves the existing ots_pending receipt (level 3) as the
// maximum until a later poll succeeds.
