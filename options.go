package art

// Option configures a Tree, SyncTree or OLCTree at construction time.
type Option func(*config)

type config struct {
	stats        bool
	trackMutate  bool
}

// WithStats enables node-kind and mutation counters, readable via the
// tree's Stats method.
func WithStats() Option {
	return func(c *config) { c.stats = true }
}

// WithTrackMutate enables recording of the key of every successful Insert,
// Upsert and Remove; the keys accumulate until TrackedMutations returns and
// clears them, and Clear drops them. DeletePrefix records nothing. Only the
// single-threaded Tree and mutex-serialized SyncTree support it; OLCTree
// ignores it, since tracking would require pausing lock-free writers to
// take a consistent snapshot, defeating the point of the variant.
func WithTrackMutate() Option {
	return func(c *config) { c.trackMutate = true }
}

func newConfig(opts []Option) config {
	var c config
	for _, opt := range opts {
		opt(&c)
	}
	return c
}
