// Package web3 holds chain connectivity shared by the lottery client: chain
// definitions loaded from YAML, the Backend capability the contract gateway
// and wallet need, and the Client abstraction implemented per chain family.
package web3
