package forge

// Example: Folder-based Bilateral Dispute Resolution
//
// This example shows how to use FolderPeerTransport so two chain owners
// can exchange atom history and bilateral witness acknowledgements
// without a network path between them — useful for development, testing,
// or single-machine deployments where both parties share a mounted
// directory.
//
// Folder Structure:
//
//   /shared/forge/
//     chains/
//       alice.json          - alice's ExportedChain
//       bob.json            - bob's ExportedChain
//     bilateral/
//       alice/
//         <merkle_root>.gob - bob's acknowledgement of alice's root
//       bob/
//         <merkle_root>.gob - alice's acknowledgement of bob's root
//
// Security note: sharing a filesystem means both parties trust the same
// storage medium; in production, prefer HTTPPeerTransport over a network
// path with its own access controls.
//
// Usage Example:
//
//   // ===== Alice's side =====
//
//   transport, _ := forge.NewFolderPeerTransport("/shared/forge")
//
//   aliceChain := forge.NewChain("alice@example.com")
//   aliceChain.Record(forge.RecordedOperation{
//       Who: "alice@example.com", From: "draft", Action: "submit", To: "review",
//   })
//   block := aliceChain.Seal(time.Now().UnixMilli())
//
//   transport.PublishChain("alice", forge.ExportedChain{
//       IdentityHash: block.Root,
//       AtomCount:    len(aliceChain.Atoms()),
//       Atoms:        aliceChain.Atoms(),
//   })
//
//   // ===== Bob's side =====
//
//   transport, _ := forge.NewFolderPeerTransport("/shared/forge")
//
//   aliceAtoms, _ := transport.FetchAtoms("alice", 0, 1)
//   divergence := forge.FindDivergence(aliceAtoms, bobChain.Atoms()[:1])
//   if !divergence.Diverged {
//       proof := forge.CreateBilateralWitness(block.Root, "bob@example.com", time.Now().UnixMilli())
//       transport.SendBilateralAck("alice", block.Root, proof)
//   }
//
//   // ===== Alice reads Bob's acknowledgement =====
//
//   ack, _ := transport.LoadBilateralAck("alice", block.Root)
//
//
// Migration to a network deployment: swap FolderPeerTransport for
// HTTPPeerTransport against a running PeerServer; FetchAtoms and
// SendBilateralAck have the same signatures either way.
