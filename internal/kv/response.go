package kv

// Response is the result of a Call. Its concrete type is *PutResponse or *GetResponse.
type Response interface {
	isResponse()
}

// KeyValue is one stored pair.
type KeyValue struct {
	Key         []byte
	Value       []byte
	ModRevision int64
}

// PutResponse answers Put and PutWithOptions.
type PutResponse struct {
	Revision int64
	// PrevKV is the overwritten pair when PutOptions.PrevKV was set and a pair existed.
	PrevKV *KeyValue
}

// GetResponse answers Get and GetWithOptions.
type GetResponse struct {
	Revision int64
	// Count is the number of keys matching the request, regardless of Limit.
	Count int64
	// More reports that Limit cut the result short.
	More bool
	KVs  []KeyValue
}

func (*PutResponse) isResponse() {}
func (*GetResponse) isResponse() {}
