package pool

// Pool is a byte pool handing out slices of one reusable buffer.
// A slice returned by Get is valid until the next call to Get or Reset.
type Pool struct {
	pos int
	buf []byte
	max int
}

const defaultPoolSize = 64 * 1024

// Get gets a byte slice of specific size
func (pool *Pool) Get(size int) []byte {
	if pool.max > 0 && size > pool.max {
		return make([]byte, size)
	}
	if len(pool.buf)-pool.pos < size {
		n := len(pool.buf) * 2
		if n < size {
			n = size
		}
		if pool.max > 0 && n > pool.max {
			n = pool.max
		}
		pool.pos = 0
		pool.buf = make([]byte, n)
	}
	b := pool.buf[pool.pos : pool.pos+size : pool.pos+size]
	pool.pos += size
	return b
}

// Reset makes the whole buffer available again
func (pool *Pool) Reset() {
	pool.pos = 0
}

// NewPool return a Pool, max bounds the retained buffer (0 for unbounded)
func NewPool(max int) *Pool {
	size := defaultPoolSize
	if max > 0 && size > max {
		size = max
	}
	return &Pool{
		buf: make([]byte, size),
		max: max,
	}
}
