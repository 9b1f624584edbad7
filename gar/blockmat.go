// Package gar implements the proximal Riccati LQ kernel: the factorization
// and forward-substitution engine for the block-structured linear-quadratic
// sub-problems that arise at each Newton iteration of the ProxDDP outer
// solver (see package proxddp).
package gar

import "gonum.org/v1/gonum/mat"

// BlockVector is a named partition of a dense vector into contiguous
// segments, addressable without copying the backing storage. It mirrors the
// teacher's convention of viewing a single flat buffer through typed,
// non-owning sub-slices rather than allocating one vector per segment.
type BlockVector struct {
	data []float64
	off  []int
}

// NewBlockVector allocates a zero-filled block vector with the given
// segment sizes.
func NewBlockVector(sizes []int) *BlockVector {
	off := make([]int, len(sizes)+1)
	for i, s := range sizes {
		off[i+1] = off[i] + s
	}
	return &BlockVector{data: make([]float64, off[len(sizes)]), off: off}
}

// NumSegments returns the number of segments in the partition.
func (b *BlockVector) NumSegments() int { return len(b.off) - 1 }

// Len returns the total length of the vector.
func (b *BlockVector) Len() int { return len(b.data) }

// Vec returns the whole vector as a *mat.VecDense view.
func (b *BlockVector) Vec() *mat.VecDense { return mat.NewVecDense(len(b.data), b.data) }

// Segment returns the i-th segment as a *mat.VecDense view sharing storage
// with the receiver.
func (b *BlockVector) Segment(i int) *mat.VecDense {
	lo, hi := b.off[i], b.off[i+1]
	return mat.NewVecDense(hi-lo, b.data[lo:hi])
}

// Top returns the leading n segments, concatenated, as a single view. It is
// used where a solve must act jointly on several leading segments (e.g. the
// feedforward/feedback pairs (kff,zff) and (K,Z) solved by one Cholesky
// right-hand side).
func (b *BlockVector) Top(nSegments int) *mat.VecDense {
	hi := b.off[nSegments]
	return mat.NewVecDense(hi, b.data[:hi])
}

// Reset zeroes the backing storage in place. Allocation-free.
func (b *BlockVector) Reset() {
	for i := range b.data {
		b.data[i] = 0
	}
}

// BlockMatrix is a named row/column partition of a dense matrix, addressable
// without copying the backing storage (C1 in the design).
type BlockMatrix struct {
	m        *mat.Dense
	rowOff   []int
	colOff   []int
	nRows    int
	nCols    int
}

// NewBlockMatrix allocates a zero-filled block matrix with the given row and
// column block sizes.
func NewBlockMatrix(rowSizes, colSizes []int) *BlockMatrix {
	rowOff := make([]int, len(rowSizes)+1)
	for i, s := range rowSizes {
		rowOff[i+1] = rowOff[i] + s
	}
	colOff := make([]int, len(colSizes)+1)
	for j, s := range colSizes {
		colOff[j+1] = colOff[j] + s
	}
	nRows, nCols := rowOff[len(rowSizes)], colOff[len(colSizes)]
	return &BlockMatrix{
		m:      mat.NewDense(nRows, nCols, make([]float64, nRows*nCols)),
		rowOff: rowOff,
		colOff: colOff,
		nRows:  nRows,
		nCols:  nCols,
	}
}

// Dense returns the whole matrix.
func (b *BlockMatrix) Dense() *mat.Dense { return b.m }

// Dims returns the total (rows, cols) of the partitioned matrix.
func (b *BlockMatrix) Dims() (int, int) { return b.nRows, b.nCols }

// Block returns the (i,j) block view, sharing storage with the receiver.
func (b *BlockMatrix) Block(i, j int) *mat.Dense {
	return b.m.Slice(b.rowOff[i], b.rowOff[i+1], b.colOff[j], b.colOff[j+1]).(*mat.Dense)
}

// RowBlock returns the i-th row-block, spanning all columns.
func (b *BlockMatrix) RowBlock(i int) *mat.Dense {
	return b.m.Slice(b.rowOff[i], b.rowOff[i+1], 0, b.nCols).(*mat.Dense)
}

// ColBlock returns the j-th column-block, spanning all rows.
func (b *BlockMatrix) ColBlock(j int) *mat.Dense {
	return b.m.Slice(0, b.nRows, b.colOff[j], b.colOff[j+1]).(*mat.Dense)
}

// TopRowBlocks returns the leading n row-blocks, concatenated, spanning all
// columns. Used where a single Cholesky solve acts jointly on several
// leading block-rows (e.g. the (kff;zff) and (K;Z) systems).
func (b *BlockMatrix) TopRowBlocks(n int) *mat.Dense {
	return b.m.Slice(0, b.rowOff[n], 0, b.nCols).(*mat.Dense)
}

// Reset zeroes the backing storage in place. Allocation-free.
func (b *BlockMatrix) Reset() {
	r, c := b.m.Dims()
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			b.m.Set(i, j, 0)
		}
	}
}
