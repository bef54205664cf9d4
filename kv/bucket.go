// Copyright (c) 2019 The chain-libs developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package kv

import "github.com/syndtr/goleveldb/leveldb/util"

// Bucket provides a logical key space within a kv store by prefixing
// every key.
type Bucket string

// ProxyGetter returns a getter which prefixes all keys with the bucket.
func (b Bucket) ProxyGetter(src Getter) Getter {
	return &bucketGetter{b, src}
}

// ProxyPutter returns a putter which prefixes all keys with the bucket.
func (b Bucket) ProxyPutter(src Putter) Putter {
	return &bucketPutter{b, src}
}

// ProxyGetPutter returns a get-putter which prefixes all keys with the
// bucket.
func (b Bucket) ProxyGetPutter(src GetPutter) GetPutter {
	return &struct {
		Getter
		Putter
	}{
		b.ProxyGetter(src),
		b.ProxyPutter(src),
	}
}

func (b Bucket) makeKey(key []byte) []byte {
	return append(append(make([]byte, 0, len(b)+len(key)), b...), key...)
}

type bucketGetter struct {
	b   Bucket
	src Getter
}

func (g *bucketGetter) Get(key []byte) ([]byte, error) {
	return g.src.Get(g.b.makeKey(key))
}

func (g *bucketGetter) Has(key []byte) (bool, error) {
	return g.src.Has(g.b.makeKey(key))
}

func (g *bucketGetter) IsNotFound(err error) bool {
	return g.src.IsNotFound(err)
}

func (g *bucketGetter) NewIterator(r Range) Iterator {
	from := g.b.makeKey(r.From)
	var to []byte
	if len(r.To) == 0 {
		to = util.BytesPrefix([]byte(g.b)).Limit
	} else {
		to = g.b.makeKey(r.To)
	}
	return &bucketIterator{g.b, g.src.NewIterator(Range{From: from, To: to})}
}

type bucketPutter struct {
	b   Bucket
	src Putter
}

func (p *bucketPutter) Put(key, value []byte) error {
	return p.src.Put(p.b.makeKey(key), value)
}

func (p *bucketPutter) Delete(key []byte) error {
	return p.src.Delete(p.b.makeKey(key))
}

func (p *bucketPutter) NewBatch() Batch {
	return &bucketBatch{p.b, p.src.NewBatch()}
}

type bucketBatch struct {
	b   Bucket
	src Batch
}

func (bb *bucketBatch) Put(key, value []byte) error {
	return bb.src.Put(bb.b.makeKey(key), value)
}

func (bb *bucketBatch) Delete(key []byte) error {
	return bb.src.Delete(bb.b.makeKey(key))
}

func (bb *bucketBatch) NewBatch() Batch { return &bucketBatch{bb.b, bb.src.NewBatch()} }
func (bb *bucketBatch) Len() int        { return bb.src.Len() }
func (bb *bucketBatch) Write() error    { return bb.src.Write() }

type bucketIterator struct {
	b    Bucket
	iter Iterator
}

func (i *bucketIterator) Next() bool    { return i.iter.Next() }
func (i *bucketIterator) Release()      { i.iter.Release() }
func (i *bucketIterator) Error() error  { return i.iter.Error() }
func (i *bucketIterator) Value() []byte { return i.iter.Value() }

// Key strips the bucket prefix.
func (i *bucketIterator) Key() []byte {
	return i.iter.Key()[len(i.b):]
}
