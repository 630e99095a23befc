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

package session

// Status is the lifecycle state of a session
type Status string

const (
	// StatusNew is a created session that was not prepared yet
	StatusNew Status = "NEW"
	// StatusPrepare is a session whose model was built and validated
	StatusPrepare Status = "PREPARE"
	// StatusActivate is the active session of its application
	StatusActivate Status = "ACTIVATE"
	// StatusDeactivate is a previously active session that was superseded
	StatusDeactivate Status = "DEACTIVATE"
	// StatusDelete is a session marked for removal
	StatusDelete Status = "DELETE"
	// StatusNone is used when no status applies
	StatusNone Status = "NONE"
)

var statuses = []Status{StatusNew, StatusPrepare, StatusActivate, StatusDeactivate, StatusDelete, StatusNone}

// ParseStatus parses the stored form of a status. Unknown text yields StatusNew.
func ParseStatus(value string) Status {
	for _, status := range statuses {
		if string(status) == value {
			return status
		}
	}
	return StatusNew
}

// String implements fmt.Stringer
func (s Status) String() string {
	return string(s)
}
