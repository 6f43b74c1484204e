// Deterministic test comparing inode reads and writes against an
// in-memory reference model. Uses a seeded PRNG for reproducible
// operation sequences.
//
// Failures mean: ReadAt or WriteAt returned bytes or counts that differ
// from a plain byte-array file.
package inode_test

import (
	"fmt"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/require"
)

const (
	modelMaxSize = 96 * 1024 // spans direct and indirect ranges
	modelOps     = 400
)

func Test_Inode_Matches_Model_When_Seeded_Random_Ops_Applied(t *testing.T) {
	t.Parallel()

	seeds := 8
	if testing.Short() {
		seeds = 2
	}

	for seedIndex := range seeds {
		seed := uint64(seedIndex + 1)

		t.Run(fmt.Sprintf("seed=%d", seed), func(t *testing.T) {
			t.Parallel()

			rng := rand.New(rand.NewPCG(seed, seed))

			tv := newTestVol(t, 1024)
			sector := tv.create(t, 0, false)

			ino, err := tv.store.Open(sector)
			require.NoError(t, err)

			defer func() { _ = ino.Close() }()

			// model holds the expected file content; modelLen its length.
			model := make([]byte, modelMaxSize)
			modelLen := int64(0)

			for op := 0; op < modelOps; op++ {
				offset := rng.Int64N(modelMaxSize - 1)
				size := 1 + rng.IntN(2048)

				if offset+int64(size) > modelMaxSize {
					size = int(modelMaxSize - offset)
				}

				if rng.IntN(2) == 0 {
					buf := make([]byte, size)
					for i := range buf {
						buf[i] = byte(rng.Uint32())
					}

					n, err := ino.WriteAt(buf, offset)
					require.NoError(t, err, "op %d: write at %d size %d", op, offset, size)
					require.Equal(t, size, n, "op %d: short write", op)

					copy(model[offset:], buf)

					if offset+int64(size) > modelLen {
						modelLen = offset + int64(size)
					}

					require.Equal(t, modelLen, ino.Length(), "op %d: length", op)
				} else {
					got := make([]byte, size)

					n, err := ino.ReadAt(got, offset)
					require.NoError(t, err, "op %d: read at %d size %d", op, offset, size)

					want := modelLen - offset
					if want < 0 {
						want = 0
					}

					if want > int64(size) {
						want = int64(size)
					}

					require.Equal(t, int(want), n, "op %d: read count", op)
					require.Equal(t, model[offset:offset+want], got[:n],
						"op %d: read bytes at %d", op, offset)
				}
			}

			// Full-file read against the model.
			got := make([]byte, modelLen)

			n, err := ino.ReadAt(got, 0)
			require.NoError(t, err)
			require.Equal(t, int(modelLen), n)
			require.Equal(t, model[:modelLen], got)
		})
	}
}
