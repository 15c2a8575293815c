package forge

// Example: Reading the Witness Hierarchy
//
// This example shows how to inspect a Merkle root's current trust level
// and the concrete steps remaining to raise it, using the same
// WitnessStore a chain's OTSClient and bilateral exchange write into.
//
// Usage Example:
//
//   ws := forge.NewMemoryWitnessStore()
//   root := block.Root
//
//   // No receipts yet: every root starts at level 1.
//   level, _ := forge.WitnessLevelFor(ws, root)
//   fmt.Println(level.Label) // "self"
//
//   // A counterparty acknowledges the root directly (e.g. over
//   // FolderPeerTransport or HTTPPeerTransport) after verifying no
//   // divergence with its own chain.
//   proof := forge.CreateBilateralWitness(root, "bob@example.com", time.Now().UnixMilli())
//   ws.SaveWitness(root, forge.WitnessReceipt{
//       Kind:      forge.ReceiptKindBilateral,
//       Level:     forge.LevelBilateral,
//       Bilateral: &proof,
//   })
//
//   summary, _ := forge.Summarize(ws, root)
//   fmt.Println(summary.Level.Label)   // "bilateral"
//   fmt.Println(summary.Count)         // 1
//   fmt.Println(summary.UpgradePath)   // ["Submit ... OTSClient.SubmitToOTS.", "Poll ... Bitcoin attestation."]
//
//   // Submitting to OTS and later confirming a Bitcoin attestation (see
//   // example_ots.go) raises the level further. The reported level never
//   // regresses: it is always the maximum across every stored receipt,
//   // regardless of insertion order.
//
//
// A Summarize call is cheap and safe to run on every read of a sealed
// block's status view; it does no network I/O itself — only SubmitToOTS
// and CheckOTSUpgrade talk to calendars.
