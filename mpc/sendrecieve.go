package mpc

import (
	"encoding/binary"

	mpc_core "github.com/hhcho/mpc-core"
	"github.com/pkg/errors"
)

func (netObj *Network) SendInt(val, to int) error {
	conn := netObj.conns[to]

	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, uint64(val))
	if err := WriteFull(conn, buf); err != nil {
		return errors.Wrapf(err, "send int to party %d", to)
	}

	netObj.UpdateSenderLog(to, 8)
	return nil
}

func (netObj *Network) SendIntVector(v []uint64, to int) error {
	conn := netObj.conns[to]

	bytes := make([]byte, 8*len(v))
	for i := range v {
		binary.LittleEndian.PutUint64(bytes[(i*8):((i*8)+8)], v[i])
	}

	if err := WriteFull(conn, bytes); err != nil {
		return errors.Wrapf(err, "send int vector to party %d", to)
	}

	netObj.UpdateSenderLog(to, len(bytes))
	return nil
}

// SendRData sends ring elements to party p
func (netObj *Network) SendRData(data interface{}, p int) error {
	conn := netObj.conns[p]
	bytes, err := MarshalRData(data)
	if err != nil {
		return err
	}

	var buf []byte

	switch data.(type) {
	case mpc_core.RElem:
	default:
		buf = make([]byte, 4)
		binary.LittleEndian.PutUint32(buf, uint32(len(bytes)))
		if err := WriteFull(conn, buf); err != nil {
			return errors.Wrapf(err, "send header to party %d", p)
		}
	}

	if err := WriteFull(conn, bytes); err != nil {
		return errors.Wrapf(err, "send data to party %d", p)
	}

	netObj.UpdateSenderLog(p, len(buf)+len(bytes))
	return nil
}

func (netObj *Network) ReceiveInt(from int) (int, error) {
	conn := netObj.conns[from]

	buf := make([]byte, 8)
	if err := ReadFull(conn, buf); err != nil {
		return 0, errors.Wrapf(err, "receive int from party %d", from)
	}
	val := int(binary.LittleEndian.Uint64(buf))

	netObj.UpdateReceiverLog(from, len(buf))

	return val, nil
}

func (netObj *Network) ReceiveIntVector(nElem, from int) ([]uint64, error) {
	conn := netObj.conns[from]

	data := make([]byte, nElem*8)
	if err := ReadFull(conn, data); err != nil {
		return nil, errors.Wrapf(err, "receive int vector from party %d", from)
	}

	out := make([]uint64, nElem)
	for i := range out {
		out[i] = binary.LittleEndian.Uint64(data[(i * 8):((i * 8) + 8)])
	}

	netObj.UpdateReceiverLog(from, len(data))

	return out, nil
}

// readSized reads a 4-byte length header followed by the payload and
// checks the payload against the expected size
func (netObj *Network) readSized(expected uint32, p int) ([]byte, error) {
	conn := netObj.conns[p]

	buf := make([]byte, 4)
	if err := ReadFull(conn, buf); err != nil {
		return nil, errors.Wrapf(err, "receive header from party %d", p)
	}

	byteSize := binary.LittleEndian.Uint32(buf)
	if byteSize != expected {
		return nil, errors.Errorf("data received from party %d: %d bytes, expected %d bytes", p, byteSize, expected)
	}

	data := make([]byte, byteSize)
	if err := ReadFull(conn, data); err != nil {
		return nil, errors.Wrapf(err, "receive data from party %d", p)
	}

	netObj.UpdateReceiverLog(p, len(buf)+len(data))
	return data, nil
}

// ReceiveRMat receives matrix from party p
func (netObj *Network) ReceiveRMat(rtype mpc_core.RElem, n, m, p int) (mpc_core.RMat, error) {
	out := mpc_core.InitRMat(rtype.Zero(), n, m)
	data, err := netObj.readSized(out.NumBytes(), p)
	if err != nil {
		return nil, err
	}
	out.UnmarshalBinary(data)
	return out, nil
}

func (netObj *Network) ReceiveRVec(rtype mpc_core.RElem, n, p int) (mpc_core.RVec, error) {
	out := mpc_core.InitRVec(rtype.Zero(), n)
	data, err := netObj.readSized(out.NumBytes(), p)
	if err != nil {
		return nil, err
	}
	out.UnmarshalBinary(data)
	return out, nil
}

func (netObj *Network) ReceiveRElem(rtype mpc_core.RElem, p int) (mpc_core.RElem, error) {
	conn := netObj.conns[p]

	buf := make([]byte, rtype.NumBytes())
	if err := ReadFull(conn, buf); err != nil {
		return nil, errors.Wrapf(err, "receive element from party %d", p)
	}

	netObj.UpdateReceiverLog(p, len(buf))
	return rtype.FromBytes(buf), nil
}
