// Package manager implements the resource manager: the only component that
// mutates resource state.
//
// An Engine owns a backend and the registry of models. Register binds a
// payload type to a model name and returns its ResourceManager:
//
//	e := manager.New(backend)
//	zones, err := manager.Register[Zone](e, manager.WithIndexed(
//		resource.IndexableField{Path: "name", Type: resource.TypeString},
//	))
//
// Mutations read the actor and timestamp from the context, set with
// WithActor or Engine.Using:
//
//	ctx = manager.WithActor(ctx, "alice", time.Now())
//	z, err := zones.Create(ctx, Zone{Name: "Forest"})
//
// WRITE PROTOCOL:
//
// Every mutation reads the ResourceMeta, computes the next state and stores
// it with MetaStore.CompareAndSwap against the sequence it read. Of two
// concurrent writers that read the same meta exactly one wins; the other
// receives a CONFLICT error and storage is unchanged for it.
//
// A new revision is stored before the meta that points at it. If the
// compare-and-swap loses, the revision is deleted again so
// TotalRevisionCount always equals the number of stored revisions.
//
// Amending a draft (ModeModify) claims the meta first and then replaces the
// revision bytes wholesale.
//
// There are no cross-resource transactions. Delete propagation runs one
// compare-and-swap per dependent; deleting an already deleted resource runs
// propagation again, so an interrupted cascade can be resumed.
package manager
