package mpc

import (
	mpc_core "github.com/hhcho/mpc-core"
	"github.com/pkg/errors"
)

func MarshalRData(val interface{}) ([]byte, error) {
	switch t := val.(type) {
	case mpc_core.RElem:
		buf := make([]byte, t.NumBytes())
		t.ToBytes(buf)
		return buf, nil
	case mpc_core.RVec:
		return t.MarshalBinary()
	case mpc_core.RMat:
		return t.MarshalBinary()
	}
	return nil, errors.Errorf("cannot marshal unknown type %T", val)
}
