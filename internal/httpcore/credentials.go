package httpcore

// CredentialStore is the interface the parser's login side-effect
// depends on, per spec.md §9's re-architecture note ("inject a
// CredentialStore interface; the parser depends only on the interface,
// enabling test doubles"). *kvstore.SkipList satisfies it.
type CredentialStore interface {
	Get(key string) (string, bool)
}
