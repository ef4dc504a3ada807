package value

import "errors"

// errRangeNegativeIndex is returned by ArrayObj.Set for a negative index;
// the vm package wraps it into a vmerrors.RangeError carrying source line
// info before surfacing it to the host boundary.
var errRangeNegativeIndex = errors.New("negative array index")
