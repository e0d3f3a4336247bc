/*
Package storage persists brokering attempt summaries in BoltDB.

Each call to the brokering manager records one attempt: the runtime it
served, how many brokers it waited for, and how it ended. Broker events
themselves are never stored.

All attempts live in a single "attempts" bucket keyed by attempt id, with
JSON values. Listing scans the bucket and sorts by start time, which is
adequate for the volume a single daemon produces.

	store, err := storage.NewBoltStore("/var/lib/burrow")
	if err != nil {
		return err
	}
	defer store.Close()

	attempts, err := store.ListAttemptsByWorkspace("workspace1a2b3c")
*/
package storage
