package partition

import "iter"

// Enumerate yields every partition of n exactly once, each in ascending order,
// using the accelerated ascending-composition generator (Kelleher). The
// sequence is lazy and single-pass; calling Enumerate again restarts it.
// Every yielded partition is a fresh slice the caller may keep.
func Enumerate(n int) iter.Seq[Partition] {
	return func(yield func(Partition) bool) {
		if n < 1 {
			return
		}
		a := make([]int, n+1)
		k := 1
		y := n - 1
		a[1] = n
		for k != 0 {
			x := a[k-1] + 1
			k--
			for 2*x <= y {
				a[k] = x
				y -= x
				k++
			}
			l := k + 1
			for x <= y {
				a[k] = x
				a[l] = y
				if !yield(clone(a[:k+2])) {
					return
				}
				x++
				y--
			}
			a[k] = x + y
			y = x + y - 1
			if !yield(clone(a[:k+1])) {
				return
			}
		}
	}
}

// Count returns p(n), the number of partitions of n, from Euler's pentagonal
// number recurrence.
func Count(n int) uint64 {
	if n < 0 {
		return 0
	}
	p := make([]int64, n+1)
	p[0] = 1
	for i := 1; i <= n; i++ {
		var total int64
		for j := 1; ; j++ {
			g1 := j * (3*j - 1) / 2
			if g1 > i {
				break
			}
			sign := int64(1)
			if j%2 == 0 {
				sign = -1
			}
			total += sign * p[i-g1]
			if g2 := j * (3*j + 1) / 2; g2 <= i {
				total += sign * p[i-g2]
			}
		}
		p[i] = total
	}
	return uint64(p[n])
}

func clone(a []int) Partition {
	p := make(Partition, len(a))
	copy(p, a)
	return p
}
