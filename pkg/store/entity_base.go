package store

// BaseEntityStore is the base implementation of EntityStore. Client is the
// underlying datastore client.
type BaseEntityStore[T any] struct {
	Client T
}
