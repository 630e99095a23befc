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

package maintenance

import (
	"slices"
	"time"
)

// StaggeredDelay returns the initial delay of a job run every interval on
// hostname, so that the same job fires at evenly spread offsets across
// clusterHostnames. A host missing from the list starts after one interval.
func StaggeredDelay(interval time.Duration, now time.Time, hostname string, clusterHostnames []string) time.Duration {
	index := slices.Index(clusterHostnames, hostname)
	if index < 0 || interval <= 0 {
		return interval
	}

	intervalMillis := interval.Milliseconds()
	offset := int64(index) * intervalMillis / int64(len(clusterHostnames))
	return time.Duration(floorMod(offset-now.UnixMilli(), intervalMillis)) * time.Millisecond
}

func floorMod(x, y int64) int64 {
	if y == 0 {
		return 0
	}
	m := x % y
	if m != 0 && (m < 0) != (y < 0) {
		m += y
	}
	return m
}
