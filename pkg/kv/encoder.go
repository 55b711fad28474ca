package kv

import (
	"bytes"

	"github.com/kelindar/binary"
	"github.com/lintang-b-s/roadgpkg/pkg/roadnetwork"
)

func encodeLane(lane roadnetwork.LaneSnapshot) ([]byte, error) {
	bb, err := binary.Marshal(lane)
	if err != nil {
		return nil, err
	}
	return compress(bb)
}

func decodeLane(bbCompressed []byte) (roadnetwork.LaneSnapshot, error) {
	var lane roadnetwork.LaneSnapshot
	bb, err := decompress(bbCompressed)
	if err != nil {
		return lane, err
	}
	err = binary.Unmarshal(bb, &lane)
	return lane, err
}

func encodeSnapshotHeader(header roadnetwork.Snapshot) ([]byte, error) {
	bb, err := binary.Marshal(header)
	if err != nil {
		return nil, err
	}
	return compress(bb)
}

func decodeSnapshotHeader(bbCompressed []byte) (roadnetwork.Snapshot, error) {
	var header roadnetwork.Snapshot
	bb, err := decompress(bbCompressed)
	if err != nil {
		return header, err
	}
	err = binary.Unmarshal(bb, &header)
	return header, err
}

func compress(bb []byte) ([]byte, error) {
	var out bytes.Buffer
	if err := CompressData(bb, &out); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

func decompress(bbCompressed []byte) ([]byte, error) {
	var out bytes.Buffer
	if err := DecompressData(bbCompressed, &out); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}
