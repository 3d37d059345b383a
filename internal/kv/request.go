package kv

import "time"

// Op names a request variant.
type Op string

const (
	OpPut            Op = "put"
	OpPutWithOptions Op = "put_with_options"
	OpGet            Op = "get"
	OpGetWithOptions Op = "get_with_options"
)

// Request is one key-value operation. The set of variants is closed:
// Put, PutWithOptions, Get and GetWithOptions.
type Request interface {
	Op() Op
	RequestKey() []byte
	isRequest()
}

// Typed is a Request that declares which Response variant answers it.
type Typed[R Response] interface {
	Request
	answer(res Response) (R, bool)
}

// PutOptions modify a put.
type PutOptions struct {
	// PrevKV asks the store to return the pair that was overwritten, if any.
	PrevKV bool
	// TTL expires the entry after the given duration. Zero means no expiry.
	TTL time.Duration
}

// GetOptions modify a get.
type GetOptions struct {
	// RangeEnd turns the get into a range over [Key, RangeEnd).
	// A single zero byte means every key greater than or equal to Key.
	RangeEnd []byte
	// CountOnly returns just the number of matching keys.
	CountOnly bool
	// KeysOnly omits values from the returned pairs.
	KeysOnly bool
	// Limit caps the number of returned pairs. Zero means no limit.
	Limit int64
}

// RangeToEnd is the RangeEnd value selecting every key from Key onwards.
var RangeToEnd = []byte{0}

// HasRange reports whether the options describe a range rather than a single key.
func (o GetOptions) HasRange() bool {
	return len(o.RangeEnd) > 0
}

// ToEnd reports whether the range is open ended.
func (o GetOptions) ToEnd() bool {
	return len(o.RangeEnd) == 1 && o.RangeEnd[0] == 0
}

// Put stores Value under Key unconditionally.
type Put struct {
	Key   []byte
	Value []byte
}

// PutWithOptions stores Value under Key with options.
type PutWithOptions struct {
	Key     []byte
	Value   []byte
	Options PutOptions
}

// Get reads the single pair stored under Key.
type Get struct {
	Key []byte
}

// GetWithOptions reads Key, or a range starting at Key, with options.
type GetWithOptions struct {
	Key     []byte
	Options GetOptions
}

// Bytes is anything that converts to a key or value.
type Bytes interface {
	~string | ~[]byte
}

// NewPut builds a Put request.
func NewPut[K, V Bytes](key K, value V) Put {
	return Put{Key: []byte(key), Value: []byte(value)}
}

// NewPutWithOptions builds a PutWithOptions request.
func NewPutWithOptions[K, V Bytes](key K, value V, opts PutOptions) PutWithOptions {
	return PutWithOptions{Key: []byte(key), Value: []byte(value), Options: opts}
}

// NewGet builds a Get request.
func NewGet[K Bytes](key K) Get {
	return Get{Key: []byte(key)}
}

// NewGetWithOptions builds a GetWithOptions request.
func NewGetWithOptions[K Bytes](key K, opts GetOptions) GetWithOptions {
	return GetWithOptions{Key: []byte(key), Options: opts}
}

func (Put) Op() Op            { return OpPut }
func (PutWithOptions) Op() Op { return OpPutWithOptions }
func (Get) Op() Op            { return OpGet }
func (GetWithOptions) Op() Op { return OpGetWithOptions }

func (r Put) RequestKey() []byte            { return r.Key }
func (r PutWithOptions) RequestKey() []byte { return r.Key }
func (r Get) RequestKey() []byte            { return r.Key }
func (r GetWithOptions) RequestKey() []byte { return r.Key }

func (Put) isRequest()            {}
func (PutWithOptions) isRequest() {}
func (Get) isRequest()            {}
func (GetWithOptions) isRequest() {}

func (Put) answer(res Response) (*PutResponse, bool)            { return asPut(res) }
func (PutWithOptions) answer(res Response) (*PutResponse, bool) { return asPut(res) }
func (Get) answer(res Response) (*GetResponse, bool)            { return asGet(res) }
func (GetWithOptions) answer(res Response) (*GetResponse, bool) { return asGet(res) }

func asPut(res Response) (*PutResponse, bool) {
	put, ok := res.(*PutResponse)

	return put, ok && put != nil
}

func asGet(res Response) (*GetResponse, bool) {
	get, ok := res.(*GetResponse)

	return get, ok && get != nil
}

// Compile-time checks.
var (
	_ Typed[*PutResponse] = Put{}
	_ Typed[*PutResponse] = PutWithOptions{}
	_ Typed[*GetResponse] = Get{}
	_ Typed[*GetResponse] = GetWithOptions{}
)
