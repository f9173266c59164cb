// Package services implements the central verifier: the identity
// registry, the replay cache bounding how long a proof stays acceptable,
// the message verifier composing both, and the HTTP surface other
// services register and verify against. Registry state optionally
// persists through a RegistryStore so a verifier restart does not force
// every node to re-register.
package services
