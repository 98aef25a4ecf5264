package mpc

// AggregateIntVec sums a public vector over the computing parties at the
// hub and sends the total back, so every computing party returns the
// same sum. Party 0 does not take part and returns nil.
func (netObj *Network) AggregateIntVec(vec []uint64) (out []uint64, err error) {
	pid := netObj.GetPid()
	if pid == 0 {
		return nil, nil
	}

	if pid == netObj.GetHubPid() {
		//receive and add
		out = make([]uint64, len(vec))
		copy(out, vec)

		for p := 1; p < netObj.GetNParty(); p++ {
			if p != pid {
				other, err := netObj.ReceiveIntVector(len(vec), p)
				if err != nil {
					return nil, err
				}
				for i := range other {
					out[i] += other[i]
				}
			}
		}

		for p := 1; p < netObj.GetNParty(); p++ {
			if p != pid {
				if err := netObj.SendIntVector(out, p); err != nil {
					return nil, err
				}
			}
		}
	} else {
		if err := netObj.SendIntVector(vec, netObj.GetHubPid()); err != nil {
			return nil, err
		}
		out, err = netObj.ReceiveIntVector(len(vec), netObj.GetHubPid())
	}

	return
}
