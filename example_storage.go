package forge

// Storage Backend Comparison
//
// FORGE provides two Store backends:
//
// 1. FileStore (store.go) - DEFAULT & RECOMMENDED
//    - JSON documents (chain.json, actions.json, witnesses/<root>.json)
//    - Atomic write-then-rename, flock around the critical section
//    - Zero external dependencies beyond encoding/json
//    - Best for: a single local identity's chain, human-inspectable state
//
// 2. SQLiteStore (sqlite_store.go) - ALTERNATIVE
//    - SQLite database with WAL mode, serializable transactions
//    - Indexed lookups, straightforward migration path to a shared DB
//    - Best for: applications already standing up SQLite, or that want
//      SQL access to atom/block history
//
// Usage Examples:
//
// === FileStore (Default, Recommended) ===
//
//   import "forge"
//
//   cfg, err := forge.LoadConfig("/etc/forge/alice.yaml")
//   if err != nil {
//       log.Fatal(err)
//   }
//   store, err := forge.OpenFileStore(cfg.StoreDir)
//   if err != nil && err != forge.ErrStoreCorruption {
//       log.Fatal(err)
//   }
//   defer store.Close()
//
//   chain := forge.NewChain("alice@example.com")
//   atom := chain.Record(forge.RecordedOperation{
//       Who: "alice@example.com", From: "draft", Action: "submit", To: "review",
//   })
//   idx, _ := store.AppendAtom(atom)
//
//
// === SQLiteStore (Alternative) ===
//
//   import "forge"
//
//   store, err := forge.OpenSQLiteStore("file:forge.db")
//   if err != nil {
//       log.Fatal(err)
//   }
//   defer store.Close()
//
//   // Same Store interface, same chain/atom shapes.
//   idx, _ := store.AppendAtom(atom)
//
//
// Persisted layout (FileStore):
//
//   chain.json:    {version, created_at, atoms: [...], blocks: [...], meta: {...}}
//   actions.json:  {version, note: "LOCAL ONLY — do not share", created_at, entries: {...}}
//   witnesses/<merkle_root>.json: ordered list of receipts for that root
//
// actions.json never participates in export: ExportAll walks only the
// chain's atoms, blocks, and identity hash.
//
// Migration between backends:
//
//   sqlStore, _ := forge.OpenSQLiteStore("forge.db")
//   exported, _ := sqlStore.ExportAll()
//
//   fileStore, _ := forge.OpenFileStore(cfg.StoreDir)
//   fileStore.ImportChain(exported)
