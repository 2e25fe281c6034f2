// MIT License
//
// Copyright (c) 2022-2026 GoAkt Team
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

package hrw

import (
	"encoding/binary"

	"github.com/zeebo/xxh3"
)

// NoOwner is the owner position reported for shards when there is no candidate
const NoOwner = -1

// Seed derives the reproducible hash seed of a candidate from its identity
func Seed(id string) uint64 {
	return xxh3.HashString(id)
}

// Score returns the rendezvous score of a candidate for a shard index.
// salt lets distinct shard spaces produce independent assignments.
func Score(seed uint64, index int, salt uint64) uint64 {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(index))
	return xxh3.HashSeed(buf[:], seed^salt)
}

// Best returns the position in seeds of the highest scoring candidate for index.
// Ties go to the lower position. It returns NoOwner when seeds is empty.
func Best(seeds []uint64, index int, salt uint64) int {
	best := NoOwner
	var bestScore uint64
	for i, seed := range seeds {
		score := Score(seed, index, salt)
		if best == NoOwner || score > bestScore {
			best = i
			bestScore = score
		}
	}
	return best
}

// Owners computes the owner position of every shard index in [0, count).
func Owners(seeds []uint64, count int, salt uint64) []int {
	if count <= 0 {
		return nil
	}

	owners := make([]int, count)
	for index := range owners {
		owners[index] = Best(seeds, index, salt)
	}
	return owners
}
