// Package fdt builds Flattened Device Tree fragments and blobs.
package fdt

import (
	"bytes"
	"encoding/binary"
)

const (
	headerSize  = 0x28
	version     = 17
	lastCompVer = 16
	magic       = 0xd00dfeed

	beginNodeToken = 0x1
	endNodeToken   = 0x2
	propToken      = 0x3
	endToken       = 0x9
)

// Property is one device-tree property with its value already encoded
// in device-tree wire form (big-endian cells, NUL-terminated strings).
// Properties keep their insertion order.
type Property struct {
	Name  string
	Value []byte
}

// Node is a device-tree node.
type Node struct {
	Name       string
	Properties []Property
	Children   []Node
}

// AddString appends a string property.
func (n *Node) AddString(name string, values ...string) {
	var buf bytes.Buffer
	for _, v := range values {
		buf.WriteString(v)
		buf.WriteByte(0)
	}
	n.Properties = append(n.Properties, Property{Name: name, Value: buf.Bytes()})
}

// AddU32 appends a property of 32-bit cells.
func (n *Node) AddU32(name string, values ...uint32) {
	value := make([]byte, 4*len(values))
	for i, v := range values {
		binary.BigEndian.PutUint32(value[4*i:], v)
	}
	n.Properties = append(n.Properties, Property{Name: name, Value: value})
}

// AddFlag appends an empty (boolean) property.
func (n *Node) AddFlag(name string) {
	n.Properties = append(n.Properties, Property{Name: name})
}

// AddChild appends a child node.
func (n *Node) AddChild(child Node) {
	n.Children = append(n.Children, child)
}

// Build serializes the node tree rooted at root into an FDT blob.
func Build(root Node) []byte {
	b := &builder{stringsOff: make(map[string]uint32)}
	b.emitNode(root)
	return b.finish()
}

type builder struct {
	structBuf  bytes.Buffer
	strings    bytes.Buffer
	stringsOff map[string]uint32
}

func (b *builder) emitNode(n Node) {
	b.token(beginNodeToken)
	b.structBuf.WriteString(n.Name)
	b.structBuf.WriteByte(0)
	b.pad()

	for _, prop := range n.Properties {
		b.token(propToken)
		b.u32(uint32(len(prop.Value)))
		b.u32(b.stringOffset(prop.Name))
		b.structBuf.Write(prop.Value)
		b.pad()
	}
	for _, child := range n.Children {
		b.emitNode(child)
	}

	b.token(endNodeToken)
}

func (b *builder) finish() []byte {
	b.token(endToken)
	b.pad()

	structBytes := b.structBuf.Bytes()
	stringsBytes := b.strings.Bytes()

	// One empty memory reservation entry terminates the block.
	const memReserveSize = 16

	offMemReserve := headerSize
	offStruct := offMemReserve + memReserveSize
	offStrings := offStruct + len(structBytes)
	// The blob ends on a word boundary; the padding after the strings
	// block is not counted in size_dt_strings.
	totalSize := (offStrings + len(stringsBytes) + 3) &^ 3

	blob := make([]byte, totalSize)
	header := blob[:headerSize]
	binary.BigEndian.PutUint32(header[0:4], magic)
	binary.BigEndian.PutUint32(header[4:8], uint32(totalSize))
	binary.BigEndian.PutUint32(header[8:12], uint32(offStruct))
	binary.BigEndian.PutUint32(header[12:16], uint32(offStrings))
	binary.BigEndian.PutUint32(header[16:20], uint32(offMemReserve))
	binary.BigEndian.PutUint32(header[20:24], version)
	binary.BigEndian.PutUint32(header[24:28], lastCompVer)
	binary.BigEndian.PutUint32(header[28:32], 0)
	binary.BigEndian.PutUint32(header[32:36], uint32(len(stringsBytes)))
	binary.BigEndian.PutUint32(header[36:40], uint32(len(structBytes)))

	copy(blob[offStruct:], structBytes)
	copy(blob[offStrings:], stringsBytes)

	return blob
}

func (b *builder) stringOffset(name string) uint32 {
	if off, ok := b.stringsOff[name]; ok {
		return off
	}
	off := uint32(b.strings.Len())
	b.strings.WriteString(name)
	b.strings.WriteByte(0)
	b.stringsOff[name] = off
	return off
}

func (b *builder) token(token uint32) {
	b.u32(token)
}

func (b *builder) u32(v uint32) {
	var tmp [4]byte
	binary.BigEndian.PutUint32(tmp[:], v)
	b.structBuf.Write(tmp[:])
}

func (b *builder) pad() {
	for b.structBuf.Len()%4 != 0 {
		b.structBuf.WriteByte(0)
	}
}
