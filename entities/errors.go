package entities

import "errors"

var ErrStoreEntityNotFound = errors.New("store resource not found")
var ErrNotFound = errors.New("resource not found")
var ErrInvalidAddress = errors.New("invalid address")
var ErrMalformedRecord = errors.New("malformed record")
var ErrNotComplete = errors.New("not complete yet")
var ErrInvalidHeightInterval = errors.New("invalid nr height interval")
var ErrInvalidEndHeight = errors.New("invalid nr end height")
var ErrInvalidReward = errors.New("invalid dip reward")
var ErrUnsupportedVersion = errors.New("unsupported algorithm version")
