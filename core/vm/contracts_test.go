package vm

import (
	"bytes"
	"math/big"
	"testing"

	"github.com/luxfi/execd/common"
)

func TestIdentityPrecompileEchoesInput(t *testing.T) {
	evm, sdb := testEVM(t)
	sdb.AddBalance(common.HexToAddress("0x01"), big.NewInt(0))

	caller := common.HexToAddress("0xcaller")
	addr := common.BytesToAddress([]byte{0x04})
	input := []byte("hello precompile")

	ret, _, err := evm.Call(caller, addr, input, 1_000_000, new(big.Int))
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if !bytes.Equal(ret, input) {
		t.Fatalf("identity returned %x, want %x", ret, input)
	}
}

func TestSHA256PrecompileMatchesKnownVector(t *testing.T) {
	evm, _ := testEVM(t)
	caller := common.HexToAddress("0xcaller")
	addr := common.BytesToAddress([]byte{0x02})

	ret, _, err := evm.Call(caller, addr, []byte("abc"), 1_000_000, new(big.Int))
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	want := hexMustDecode("ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad")
	if !bytes.Equal(ret, want) {
		t.Fatalf("sha256(\"abc\") = %x, want %x", ret, want)
	}
}

func TestRipemd160PrecompileMatchesKnownVector(t *testing.T) {
	evm, _ := testEVM(t)
	caller := common.HexToAddress("0xcaller")
	addr := common.BytesToAddress([]byte{0x03})

	ret, _, err := evm.Call(caller, addr, []byte("abc"), 1_000_000, new(big.Int))
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	want := hexMustDecode("0000000000000000000000008eb208f7e05d987a9b044a8e98c6b087f15a0bfc")
	if !bytes.Equal(ret, want) {
		t.Fatalf("ripemd160(\"abc\") padded = %x, want %x", ret, want)
	}
}

func TestModexpPrecompileComputesExpectedResult(t *testing.T) {
	evm, _ := testEVM(t)
	caller := common.HexToAddress("0xcaller")
	addr := common.BytesToAddress([]byte{0x05})

	// base=3, exp=2, mod=5 -> 3^2 mod 5 = 4, each field length-prefixed
	// to 1 byte per EIP-198's [baseLen][expLen][modLen][base][exp][mod] layout.
	input := append(u256(1), append(u256(1), u256(1)...)...)
	input = append(input, 3, 2, 5)

	ret, _, err := evm.Call(caller, addr, input, 1_000_000, new(big.Int))
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if len(ret) != 1 || ret[0] != 4 {
		t.Fatalf("modexp(3,2,5) = %v, want [4]", ret)
	}
}

func TestEcrecoverPrecompileRejectsMalformedInput(t *testing.T) {
	evm, _ := testEVM(t)
	caller := common.HexToAddress("0xcaller")
	addr := common.BytesToAddress([]byte{0x01})

	ret, _, err := evm.Call(caller, addr, make([]byte, 128), 1_000_000, new(big.Int))
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if ret != nil {
		t.Fatalf("expected empty result for an all-zero (invalid v) input, got %x", ret)
	}
}

func TestBN256AddPrecompileHandlesInfinity(t *testing.T) {
	evm, _ := testEVM(t)
	caller := common.HexToAddress("0xcaller")
	addr := common.BytesToAddress([]byte{0x06})

	// Adding the point at infinity to itself yields infinity.
	ret, _, err := evm.Call(caller, addr, make([]byte, 128), 1_000_000, new(big.Int))
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if !bytes.Equal(ret, make([]byte, 64)) {
		t.Fatalf("infinity + infinity = %x, want all-zero", ret)
	}
}

func TestBlake2FPrecompileRejectsBadInputLength(t *testing.T) {
	evm, _ := testEVM(t)
	caller := common.HexToAddress("0xcaller")
	addr := common.BytesToAddress([]byte{0x09})

	_, _, err := evm.Call(caller, addr, make([]byte, 10), 1_000_000, new(big.Int))
	if err == nil {
		t.Fatal("expected an error for an undersized blake2f input")
	}
}

func u256(n int) []byte {
	b := make([]byte, 32)
	b[31] = byte(n)
	return b
}

func hexMustDecode(s string) []byte {
	return common.FromHex("0x" + s)
}
